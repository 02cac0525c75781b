package database

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pixelvault/gallery-repo/common/rcontext"
	"github.com/pixelvault/gallery-repo/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const AddonBackupStorage = "BACKUP_STORAGE"

type DbAddon struct {
	GalleryId   string `dynamodbav:"galleryId"`
	AddonType   string `dynamodbav:"addonType"`
	PurchasedTs int64  `dynamodbav:"purchasedTs"`
}

type AddonsTable struct {
	client DynamoClient
	table  string
}

type addonsTableWithContext struct {
	t   *AddonsTable
	ctx rcontext.RequestContext
}

func (t *AddonsTable) Prepare(ctx rcontext.RequestContext) *addonsTableWithContext {
	return &addonsTableWithContext{t: t, ctx: ctx}
}

func (t *addonsTableWithContext) Has(galleryId string, addonType string) (bool, error) {
	metrics.OrderStoreOperations.With(prometheus.Labels{"operation": "GetItem"}).Inc()
	res, err := t.t.client.GetItem(t.ctx.Context, &dynamodb.GetItemInput{
		TableName: aws.String(t.t.table),
		Key: map[string]dbtypes.AttributeValue{
			"galleryId": &dbtypes.AttributeValueMemberS{Value: galleryId},
			"addonType": &dbtypes.AttributeValueMemberS{Value: addonType},
		},
	})
	if err != nil {
		return false, err
	}
	return res.Item != nil, nil
}

func (t *addonsTableWithContext) Put(addon *DbAddon) error {
	metrics.OrderStoreOperations.With(prometheus.Labels{"operation": "PutItem"}).Inc()
	item, err := attributevalue.MarshalMap(addon)
	if err != nil {
		return err
	}
	_, err = t.t.client.PutItem(t.ctx.Context, &dynamodb.PutItemInput{
		TableName: aws.String(t.t.table),
		Item:      item,
	})
	return err
}
