package database

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pixelvault/gallery-repo/common"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type ErrorRecord struct {
	Message   string `dynamodbav:"message" json:"message"`
	Timestamp int64  `dynamodbav:"ts" json:"ts"`
}

// DbOrder is the order record as stored. Build bookkeeping is kept in
// flattened per-artifact-type attributes so every mutation is a single
// conditional update on a top-level attribute.
type DbOrder struct {
	GalleryId      string   `dynamodbav:"galleryId"`
	OrderId        string   `dynamodbav:"orderId"`
	DeliveryStatus string   `dynamodbav:"deliveryStatus"`
	PreviousStatus string   `dynamodbav:"previousStatus,omitempty"`
	SelectedKeys   []string `dynamodbav:"selectedKeys,omitempty"`

	SelectionGenerating      bool          `dynamodbav:"selectionGenerating"`
	SelectionGeneratingSince int64         `dynamodbav:"selectionGeneratingSince,omitempty"`
	SelectionFilesHash       string        `dynamodbav:"selectionFilesHash,omitempty"`
	SelectionZipKey          string        `dynamodbav:"selectionZipKey,omitempty"`
	SelectionErrorAttempts   int           `dynamodbav:"selectionErrorAttempts"`
	SelectionErrorDetails    []ErrorRecord `dynamodbav:"selectionErrorDetails,omitempty"`
	SelectionErrorFinal      *ErrorRecord  `dynamodbav:"selectionErrorFinal,omitempty"`
	SelectionRetryCount      int           `dynamodbav:"selectionRetryCount"`

	FinalGenerating      bool          `dynamodbav:"finalGenerating"`
	FinalGeneratingSince int64         `dynamodbav:"finalGeneratingSince,omitempty"`
	FinalFilesHash       string        `dynamodbav:"finalFilesHash,omitempty"`
	FinalZipKey          string        `dynamodbav:"finalZipKey,omitempty"`
	FinalErrorAttempts   int           `dynamodbav:"finalErrorAttempts"`
	FinalErrorDetails    []ErrorRecord `dynamodbav:"finalErrorDetails,omitempty"`
	FinalErrorFinal      *ErrorRecord  `dynamodbav:"finalErrorFinal,omitempty"`
	FinalRetryCount      int           `dynamodbav:"finalRetryCount"`
}

// BuildState is the decoded per-artifact-type view over the flattened
// attributes. Both artifact types share this one shape.
type BuildState struct {
	Generating      bool
	GeneratingSince int64
	FilesHash       string
	ZipKey          string
	ErrorAttempts   int
	ErrorDetails    []ErrorRecord
	ErrorFinal      *ErrorRecord
	RetryCount      int
}

func (o *DbOrder) BuildState(artifactType string) BuildState {
	if artifactType == "final" {
		return BuildState{
			Generating:      o.FinalGenerating,
			GeneratingSince: o.FinalGeneratingSince,
			FilesHash:       o.FinalFilesHash,
			ZipKey:          o.FinalZipKey,
			ErrorAttempts:   o.FinalErrorAttempts,
			ErrorDetails:    o.FinalErrorDetails,
			ErrorFinal:      o.FinalErrorFinal,
			RetryCount:      o.FinalRetryCount,
		}
	}
	return BuildState{
		Generating:      o.SelectionGenerating,
		GeneratingSince: o.SelectionGeneratingSince,
		FilesHash:       o.SelectionFilesHash,
		ZipKey:          o.SelectionZipKey,
		ErrorAttempts:   o.SelectionErrorAttempts,
		ErrorDetails:    o.SelectionErrorDetails,
		ErrorFinal:      o.SelectionErrorFinal,
		RetryCount:      o.SelectionRetryCount,
	}
}

type OrdersTable struct {
	client DynamoClient
	table  string
}

type ordersTableWithContext struct {
	t   *OrdersTable
	ctx rcontext.RequestContext
}

func (t *OrdersTable) Prepare(ctx rcontext.RequestContext) *ordersTableWithContext {
	return &ordersTableWithContext{t: t, ctx: ctx}
}

func orderKey(galleryId string, orderId string) map[string]dbtypes.AttributeValue {
	return map[string]dbtypes.AttributeValue{
		"galleryId": &dbtypes.AttributeValueMemberS{Value: galleryId},
		"orderId":   &dbtypes.AttributeValueMemberS{Value: orderId},
	}
}

// attr maps ("selection", "Generating") to the stored attribute name.
func attr(artifactType string, field string) string {
	return artifactType + field
}

func isConditionFailed(err error) bool {
	var ccf *dbtypes.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

func (t *ordersTableWithContext) Get(galleryId string, orderId string) (*DbOrder, error) {
	metrics.OrderStoreOperations.With(prometheus.Labels{"operation": "GetItem"}).Inc()
	res, err := t.t.client.GetItem(t.ctx.Context, &dynamodb.GetItemInput{
		TableName:      aws.String(t.t.table),
		Key:            orderKey(galleryId, orderId),
		ConsistentRead: aws.Bool(true), // lock decisions need read-after-write
	})
	if err != nil {
		return nil, err
	}
	if res.Item == nil {
		return nil, common.ErrOrderNotFound
	}
	order := &DbOrder{}
	if err = attributevalue.UnmarshalMap(res.Item, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (t *ordersTableWithContext) ListByGallery(galleryId string) ([]*DbOrder, error) {
	metrics.OrderStoreOperations.With(prometheus.Labels{"operation": "Query"}).Inc()
	orders := make([]*DbOrder, 0)
	var startKey map[string]dbtypes.AttributeValue
	for {
		res, err := t.t.client.Query(t.ctx.Context, &dynamodb.QueryInput{
			TableName:              aws.String(t.t.table),
			KeyConditionExpression: aws.String("galleryId = :g"),
			ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
				":g": &dbtypes.AttributeValueMemberS{Value: galleryId},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, err
		}
		for _, item := range res.Items {
			order := &DbOrder{}
			if err = attributevalue.UnmarshalMap(item, order); err != nil {
				return nil, err
			}
			orders = append(orders, order)
		}
		if res.LastEvaluatedKey == nil {
			break
		}
		startKey = res.LastEvaluatedKey
	}
	return orders, nil
}

func (t *ordersTableWithContext) Put(order *DbOrder) error {
	metrics.OrderStoreOperations.With(prometheus.Labels{"operation": "PutItem"}).Inc()
	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return err
	}
	_, err = t.t.client.PutItem(t.ctx.Context, &dynamodb.PutItemInput{
		TableName: aws.String(t.t.table),
		Item:      item,
	})
	return err
}

// TryAcquireBuildLock flips the generating flag for the artifact type, but
// only if no build currently holds it. The content hash the build was
// dispatched for is persisted in the same write.
func (t *ordersTableWithContext) TryAcquireBuildLock(galleryId string, orderId string, artifactType string, nowMillis int64, filesHash string) error {
	metrics.OrderStoreOperations.With(prometheus.Labels{"operation": "UpdateItem"}).Inc()
	_, err := t.t.client.UpdateItem(t.ctx.Context, &dynamodb.UpdateItemInput{
		TableName:           aws.String(t.t.table),
		Key:                 orderKey(galleryId, orderId),
		UpdateExpression:    aws.String("SET #gen = :true, #since = :now, #hash = :hash"),
		ConditionExpression: aws.String("attribute_exists(galleryId) AND (attribute_not_exists(#gen) OR #gen = :false)"),
		ExpressionAttributeNames: map[string]string{
			"#gen":   attr(artifactType, "Generating"),
			"#since": attr(artifactType, "GeneratingSince"),
			"#hash":  attr(artifactType, "FilesHash"),
		},
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":true":  &dbtypes.AttributeValueMemberBOOL{Value: true},
			":false": &dbtypes.AttributeValueMemberBOOL{Value: false},
			":now":   &dbtypes.AttributeValueMemberN{Value: formatInt(nowMillis)},
			":hash":  &dbtypes.AttributeValueMemberS{Value: filesHash},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return common.ErrBuildInProgress
		}
		return err
	}
	return nil
}

// ReleaseBuildLock clears the generating flag unconditionally. Safe to call
// repeatedly.
func (t *ordersTableWithContext) ReleaseBuildLock(galleryId string, orderId string, artifactType string) error {
	metrics.OrderStoreOperations.With(prometheus.Labels{"operation": "UpdateItem"}).Inc()
	_, err := t.t.client.UpdateItem(t.ctx.Context, &dynamodb.UpdateItemInput{
		TableName:        aws.String(t.t.table),
		Key:              orderKey(galleryId, orderId),
		UpdateExpression: aws.String("SET #gen = :false REMOVE #since"),
		ExpressionAttributeNames: map[string]string{
			"#gen":   attr(artifactType, "Generating"),
			"#since": attr(artifactType, "GeneratingSince"),
		},
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":false": &dbtypes.AttributeValueMemberBOOL{Value: false},
		},
	})
	return err
}

// ReclaimBuildLock clears a held lock only when its timestamp is at or below
// the cutoff. Returns false when the lock is absent or still live.
func (t *ordersTableWithContext) ReclaimBuildLock(galleryId string, orderId string, artifactType string, cutoffMillis int64) (bool, error) {
	metrics.OrderStoreOperations.With(prometheus.Labels{"operation": "UpdateItem"}).Inc()
	_, err := t.t.client.UpdateItem(t.ctx.Context, &dynamodb.UpdateItemInput{
		TableName:           aws.String(t.t.table),
		Key:                 orderKey(galleryId, orderId),
		UpdateExpression:    aws.String("SET #gen = :false REMOVE #since"),
		ConditionExpression: aws.String("#gen = :true AND #since <= :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#gen":   attr(artifactType, "Generating"),
			"#since": attr(artifactType, "GeneratingSince"),
		},
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":true":   &dbtypes.AttributeValueMemberBOOL{Value: true},
			":false":  &dbtypes.AttributeValueMemberBOOL{Value: false},
			":cutoff": &dbtypes.AttributeValueMemberN{Value: formatInt(cutoffMillis)},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (t *ordersTableWithContext) SetArtifact(galleryId string, orderId string, artifactType string, zipKey string, filesHash string) error {
	metrics.OrderStoreOperations.With(prometheus.Labels{"operation": "UpdateItem"}).Inc()
	_, err := t.t.client.UpdateItem(t.ctx.Context, &dynamodb.UpdateItemInput{
		TableName:        aws.String(t.t.table),
		Key:              orderKey(galleryId, orderId),
		UpdateExpression: aws.String("SET #zip = :zip, #hash = :hash"),
		ExpressionAttributeNames: map[string]string{
			"#zip":  attr(artifactType, "ZipKey"),
			"#hash": attr(artifactType, "FilesHash"),
		},
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":zip":  &dbtypes.AttributeValueMemberS{Value: zipKey},
			":hash": &dbtypes.AttributeValueMemberS{Value: filesHash},
		},
	})
	return err
}

func (t *ordersTableWithContext) ClearArtifact(galleryId string, orderId string, artifactType string) error {
	metrics.OrderStoreOperations.With(prometheus.Labels{"operation": "UpdateItem"}).Inc()
	_, err := t.t.client.UpdateItem(t.ctx.Context, &dynamodb.UpdateItemInput{
		TableName:        aws.String(t.t.table),
		Key:              orderKey(galleryId, orderId),
		UpdateExpression: aws.String("REMOVE #zip, #hash"),
		ExpressionAttributeNames: map[string]string{
			"#zip":  attr(artifactType, "ZipKey"),
			"#hash": attr(artifactType, "FilesHash"),
		},
	})
	return err
}

// RecordBuildError appends to the error history and bumps the attempt
// counter atomically, returning the new attempt count.
func (t *ordersTableWithContext) RecordBuildError(galleryId string, orderId string, artifactType string, record ErrorRecord) (int, error) {
	metrics.OrderStoreOperations.With(prometheus.Labels{"operation": "UpdateItem"}).Inc()
	recordAv, err := attributevalue.Marshal(record)
	if err != nil {
		return 0, err
	}
	res, err := t.t.client.UpdateItem(t.ctx.Context, &dynamodb.UpdateItemInput{
		TableName:        aws.String(t.t.table),
		Key:              orderKey(galleryId, orderId),
		UpdateExpression: aws.String("SET #details = list_append(if_not_exists(#details, :empty), :rec), #attempts = if_not_exists(#attempts, :zero) + :one"),
		ExpressionAttributeNames: map[string]string{
			"#details":  attr(artifactType, "ErrorDetails"),
			"#attempts": attr(artifactType, "ErrorAttempts"),
		},
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":empty": &dbtypes.AttributeValueMemberL{Value: []dbtypes.AttributeValue{}},
			":rec":   &dbtypes.AttributeValueMemberL{Value: []dbtypes.AttributeValue{recordAv}},
			":zero":  &dbtypes.AttributeValueMemberN{Value: "0"},
			":one":   &dbtypes.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: dbtypes.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}
	return parseIntAttr(res.Attributes[attr(artifactType, "ErrorAttempts")]), nil
}

func (t *ordersTableWithContext) SetFinalBuildError(galleryId string, orderId string, artifactType string, record ErrorRecord) error {
	metrics.OrderStoreOperations.With(prometheus.Labels{"operation": "UpdateItem"}).Inc()
	recordAv, err := attributevalue.Marshal(record)
	if err != nil {
		return err
	}
	_, err = t.t.client.UpdateItem(t.ctx.Context, &dynamodb.UpdateItemInput{
		TableName:        aws.String(t.t.table),
		Key:              orderKey(galleryId, orderId),
		UpdateExpression: aws.String("SET #final = :rec"),
		ExpressionAttributeNames: map[string]string{
			"#final": attr(artifactType, "ErrorFinal"),
		},
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":rec": recordAv,
		},
	})
	return err
}

// ResetBuildErrors clears the error history after an explicit owner reset.
func (t *ordersTableWithContext) ResetBuildErrors(galleryId string, orderId string, artifactType string) error {
	metrics.OrderStoreOperations.With(prometheus.Labels{"operation": "UpdateItem"}).Inc()
	_, err := t.t.client.UpdateItem(t.ctx.Context, &dynamodb.UpdateItemInput{
		TableName:        aws.String(t.t.table),
		Key:              orderKey(galleryId, orderId),
		UpdateExpression: aws.String("SET #attempts = :zero, #retry = :zero REMOVE #final, #details"),
		ExpressionAttributeNames: map[string]string{
			"#attempts": attr(artifactType, "ErrorAttempts"),
			"#retry":    attr(artifactType, "RetryCount"),
			"#final":    attr(artifactType, "ErrorFinal"),
			"#details":  attr(artifactType, "ErrorDetails"),
		},
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":zero": &dbtypes.AttributeValueMemberN{Value: "0"},
		},
	})
	return err
}

func (t *ordersTableWithContext) IncrementRetryCount(galleryId string, orderId string, artifactType string) (int, error) {
	metrics.OrderStoreOperations.With(prometheus.Labels{"operation": "UpdateItem"}).Inc()
	res, err := t.t.client.UpdateItem(t.ctx.Context, &dynamodb.UpdateItemInput{
		TableName:        aws.String(t.t.table),
		Key:              orderKey(galleryId, orderId),
		UpdateExpression: aws.String("ADD #retry :one"),
		ExpressionAttributeNames: map[string]string{
			"#retry": attr(artifactType, "RetryCount"),
		},
		ExpressionAttributeValues: map[string]dbtypes.AttributeValue{
			":one": &dbtypes.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: dbtypes.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}
	return parseIntAttr(res.Attributes[attr(artifactType, "RetryCount")]), nil
}

// UpdateDeliveryStatus performs the guarded state machine transition. The
// write only lands when the record is still in the expected status, which
// makes duplicate triggers harmless.
func (t *ordersTableWithContext) UpdateDeliveryStatus(galleryId string, orderId string, expected string, next string, rememberPrevious bool) error {
	metrics.OrderStoreOperations.With(prometheus.Labels{"operation": "UpdateItem"}).Inc()
	update := "SET deliveryStatus = :next"
	values := map[string]dbtypes.AttributeValue{
		":next":     &dbtypes.AttributeValueMemberS{Value: next},
		":expected": &dbtypes.AttributeValueMemberS{Value: expected},
	}
	if rememberPrevious {
		update = "SET deliveryStatus = :next, previousStatus = :expected"
	}
	_, err := t.t.client.UpdateItem(t.ctx.Context, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(t.t.table),
		Key:                       orderKey(galleryId, orderId),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String("deliveryStatus = :expected"),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		if isConditionFailed(err) {
			return common.ErrStatusConflict
		}
		return err
	}
	return nil
}
