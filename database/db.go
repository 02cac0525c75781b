package database

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/pixelvault/gallery-repo/common/config"
	"github.com/sirupsen/logrus"
)

// DynamoClient is the subset of the DynamoDB API the order record store
// relies on. The real client satisfies it; tests substitute their own.
type DynamoClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type Database struct {
	client DynamoClient
	Orders *OrdersTable
	Addons *AddonsTable
}

var instance *Database
var singleton = &sync.Once{}

func GetInstance() *Database {
	if instance == nil {
		singleton.Do(func() {
			db, err := openDatabase(config.Get().Orders)
			if err != nil {
				logrus.Fatal("Failed to set up order record store: ", err)
			}
			instance = db
		})
	}
	return instance
}

func openDatabase(cfg config.OrdersConfig) (*Database, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyId != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyId, cfg.AccessSecret, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return NewDatabase(client, cfg.Table, cfg.AddonsTable), nil
}

// NewDatabase wires table accessors over an existing client. Used directly by
// tests with a substitute client.
func NewDatabase(client DynamoClient, ordersTable string, addonsTable string) *Database {
	return &Database{
		client: client,
		Orders: &OrdersTable{client: client, table: ordersTable},
		Addons: &AddonsTable{client: client, table: addonsTable},
	}
}
