package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/rl1809/catalog-sync/internal/port"
)

const (
	dynamoKeyAttr      = "id"
	dynamoCounterAttr  = "next_id"
	dynamoCounterTable = "counters"
)

// DynamoDBAPI is the subset of the DynamoDB client the store uses.
type DynamoDBAPI interface {
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// NewDynamoDBClient loads the default AWS configuration for region. A non-empty
// endpoint targets DynamoDB Local, with static credentials when none are set.
func NewDynamoDBClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if endpoint != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// DynamoDBStore is the native scan-only backend. Each logical table maps to a
// DynamoDB table named prefix+table with a numeric "id" hash key; id counters
// live in prefix+"counters", keyed by table name.
type DynamoDBStore struct {
	client DynamoDBAPI
	prefix string
}

var _ port.ScanStore = (*DynamoDBStore)(nil)

func NewDynamoDBStore(client DynamoDBAPI, tablePrefix string) *DynamoDBStore {
	return &DynamoDBStore{client: client, prefix: tablePrefix}
}

type dynamoRecord map[string]types.AttributeValue

func (r dynamoRecord) Decode(v any) error {
	return attributevalue.UnmarshalMapWithOptions(r, v, func(o *attributevalue.DecoderOptions) {
		o.TagKey = "json"
	})
}

func (d *DynamoDBStore) Scan(ctx context.Context, req port.ScanRequest) (*port.ScanPage, error) {
	in := &dynamodb.ScanInput{
		TableName: aws.String(d.prefix + req.Table),
	}
	if req.Limit > 0 {
		in.Limit = aws.Int32(int32(req.Limit))
	}
	if req.StartToken != "" {
		if _, err := strconv.ParseInt(req.StartToken, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid start token %q: %w", req.StartToken, err)
		}
		in.ExclusiveStartKey = map[string]types.AttributeValue{
			dynamoKeyAttr: &types.AttributeValueMemberN{Value: req.StartToken},
		}
	}
	if req.CountOnly {
		in.Select = types.SelectCount
	}

	if !req.Filter.Empty() {
		expr, err := filterExpression(req.Filter)
		if err != nil {
			return nil, err
		}
		in.FilterExpression = expr.Filter()
		in.ExpressionAttributeNames = expr.Names()
		in.ExpressionAttributeValues = expr.Values()
	}

	out, err := d.client.Scan(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", req.Table, err)
	}

	page := &port.ScanPage{
		Count:        int(out.Count),
		ScannedCount: int(out.ScannedCount),
	}
	if !req.CountOnly {
		page.Records = make([]port.Record, len(out.Items))
		for i, item := range out.Items {
			page.Records[i] = dynamoRecord(item)
		}
	}
	if key, ok := out.LastEvaluatedKey[dynamoKeyAttr].(*types.AttributeValueMemberN); ok {
		page.NextToken = key.Value
	}
	return page, nil
}

func filterExpression(f port.Filter) (expression.Expression, error) {
	cond := expression.Name(f[0].Field).Equal(expression.Value(f[0].Value))
	for _, c := range f[1:] {
		cond = cond.And(expression.Name(c.Field).Equal(expression.Value(c.Value)))
	}

	expr, err := expression.NewBuilder().WithFilter(cond).Build()
	if err != nil {
		return expression.Expression{}, fmt.Errorf("building filter: %w", err)
	}
	return expr, nil
}

func (d *DynamoDBStore) Get(ctx context.Context, table string, id int64) (port.Record, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.prefix + table),
		Key:       idKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s/%d: %w", table, id, err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return dynamoRecord(out.Item), nil
}

// Put writes the item, then advances the table's counter past id if needed.
func (d *DynamoDBStore) Put(ctx context.Context, table string, id int64, item any) error {
	av, err := attributevalue.MarshalMapWithOptions(item, func(o *attributevalue.EncoderOptions) {
		o.TagKey = "json"
	})
	if err != nil {
		return fmt.Errorf("encoding item: %w", err)
	}
	av[dynamoKeyAttr] = idKey(id)[dynamoKeyAttr]

	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.prefix + table),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("put %s/%d: %w", table, id, err)
	}

	return d.advanceCounter(ctx, table, id)
}

func (d *DynamoDBStore) advanceCounter(ctx context.Context, table string, id int64) error {
	counter := expression.Name(dynamoCounterAttr)
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Set(counter, expression.Value(id))).
		WithCondition(expression.AttributeNotExists(counter).Or(counter.LessThan(expression.Value(id)))).
		Build()
	if err != nil {
		return fmt.Errorf("building counter update: %w", err)
	}

	_, err = d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.prefix + dynamoCounterTable),
		Key:                       counterKey(table),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("advance counter %s: %w", table, err)
	}
	return nil
}

func (d *DynamoDBStore) NextID(ctx context.Context, table string) (int64, error) {
	expr, err := expression.NewBuilder().
		WithUpdate(expression.Add(expression.Name(dynamoCounterAttr), expression.Value(1))).
		Build()
	if err != nil {
		return 0, fmt.Errorf("building counter update: %w", err)
	}

	out, err := d.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(d.prefix + dynamoCounterTable),
		Key:                       counterKey(table),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("next id %s: %w", table, err)
	}

	var id int64
	if err := attributevalue.Unmarshal(out.Attributes[dynamoCounterAttr], &id); err != nil {
		return 0, fmt.Errorf("decoding counter %s: %w", table, err)
	}
	return id, nil
}

func idKey(id int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		dynamoKeyAttr: &types.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)},
	}
}

func counterKey(table string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"name": &types.AttributeValueMemberS{Value: table},
	}
}
