package record

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/infera-ai/infera/internal/observability"
)

// DynamoAPI is the subset of the DynamoDB client used by the sink.
// It allows mock injection during testing.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// DynamoStore writes records to a DynamoDB table.
type DynamoStore struct {
	client DynamoAPI
	table  string
	logger *observability.Logger

	// writeTimeout bounds each PutItem call.
	writeTimeout time.Duration
}

// NewDynamoStore resolves AWS configuration from the default chain and
// returns a sink bound to the given table.
func NewDynamoStore(ctx context.Context, table, region string, logger *observability.Logger) (*DynamoStore, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewDynamoStoreWithClient(dynamodb.NewFromConfig(cfg), table, logger), nil
}

// NewDynamoStoreWithClient wraps an existing client. Used by tests.
func NewDynamoStoreWithClient(client DynamoAPI, table string, logger *observability.Logger) *DynamoStore {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{})
	}
	return &DynamoStore{
		client:       client,
		table:        table,
		logger:       logger,
		writeTimeout: 30 * time.Second,
	}
}

// PutClassification implements Store.
func (s *DynamoStore) PutClassification(ctx context.Context, rec *Classification) bool {
	return s.put(ctx, rec.MessageID, rec)
}

// PutAnalysis implements Store.
func (s *DynamoStore) PutAnalysis(ctx context.Context, rec *Analysis) bool {
	return s.put(ctx, rec.MessageID, rec)
}

func (s *DynamoStore) put(ctx context.Context, id string, rec any) bool {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		s.logger.Error(ctx, "marshal record", "message_id", id, "error", err)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		s.logger.Error(ctx, "put record", "table", s.table, "message_id", id, "error", err)
		return false
	}
	return true
}
