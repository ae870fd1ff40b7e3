package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	apperrors "github.com/aamamun24/FineMed-Server/common/errors"
	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// DynamoAPI is the subset of the DynamoDB client the stock counters use.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
}

// DynamoInventoryRepository keeps one stock counter item per product, keyed
// by product_id.
type DynamoInventoryRepository struct {
	client DynamoAPI
	table  string
}

func NewDynamoInventoryRepository(client DynamoAPI, table string) *DynamoInventoryRepository {
	return &DynamoInventoryRepository{client: client, table: table}
}

type stockItem struct {
	ProductID string `dynamodbav:"product_id"`
	Quantity  int    `dynamodbav:"quantity"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

func stockKey(productID uuid.UUID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"product_id": &types.AttributeValueMemberS{Value: productID.String()},
	}
}

func (r *DynamoInventoryRepository) Reserve(ctx context.Context, productID uuid.UUID, qty int) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           sdkaws.String(r.table),
		Key:                 stockKey(productID),
		UpdateExpression:    sdkaws.String("SET #qty = #qty - :qty, updated_at = :now"),
		ConditionExpression: sdkaws.String("attribute_exists(product_id) AND #qty >= :qty"),
		ExpressionAttributeNames: map[string]string{
			"#qty": "quantity",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":qty": &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
			":now": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ReturnValues:                        types.ReturnValueUpdatedNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			if len(ccf.Item) == 0 {
				return 0, apperrors.ErrProductNotFound.WithMessage("Product with ID %s not found", productID)
			}
			return 0, apperrors.ErrOutOfStock
		}
		return 0, fmt.Errorf("dynamodb reserve %s: %w", productID, err)
	}
	return quantityOf(out.Attributes)
}

func (r *DynamoInventoryRepository) Release(ctx context.Context, productID uuid.UUID, qty int) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                sdkaws.String(r.table),
		Key:                      stockKey(productID),
		UpdateExpression:         sdkaws.String("SET #qty = #qty + :qty, updated_at = :now"),
		ConditionExpression:      sdkaws.String("attribute_exists(product_id)"),
		ExpressionAttributeNames: map[string]string{"#qty": "quantity"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":qty": &types.AttributeValueMemberN{Value: strconv.Itoa(qty)},
			":now": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return 0, apperrors.ErrProductNotFound.WithMessage("Product with ID %s not found", productID)
		}
		return 0, fmt.Errorf("dynamodb release %s: %w", productID, err)
	}
	return quantityOf(out.Attributes)
}

func (r *DynamoInventoryRepository) Available(ctx context.Context, productID uuid.UUID) (int, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      sdkaws.String(r.table),
		Key:            stockKey(productID),
		ConsistentRead: sdkaws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("dynamodb get %s: %w", productID, err)
	}
	if len(out.Item) == 0 {
		return 0, apperrors.ErrProductNotFound.WithMessage("Product with ID %s not found", productID)
	}
	return quantityOf(out.Item)
}

// Quantities reads counters in batches of 100, the BatchGetItem limit.
func (r *DynamoInventoryRepository) Quantities(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	out := make(map[uuid.UUID]int, len(ids))
	for start := 0; start < len(ids); start += 100 {
		end := start + 100
		if end > len(ids) {
			end = len(ids)
		}
		keys := make([]map[string]types.AttributeValue, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, stockKey(id))
		}

		pending := map[string]types.KeysAndAttributes{r.table: {Keys: keys}}
		for len(pending) > 0 {
			res, err := r.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{RequestItems: pending})
			if err != nil {
				return nil, fmt.Errorf("dynamodb batch get: %w", err)
			}
			var items []stockItem
			if err := attributevalue.UnmarshalListOfMaps(res.Responses[r.table], &items); err != nil {
				return nil, fmt.Errorf("unmarshal stock items: %w", err)
			}
			for _, it := range items {
				if id, err := uuid.Parse(it.ProductID); err == nil {
					out[id] = it.Quantity
				}
			}
			pending = res.UnprocessedKeys
		}
	}
	return out, nil
}

func (r *DynamoInventoryRepository) SetQuantity(ctx context.Context, productID uuid.UUID, qty int) error {
	item, err := attributevalue.MarshalMap(stockItem{
		ProductID: productID.String(),
		Quantity:  qty,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal stock item: %w", err)
	}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: sdkaws.String(r.table), Item: item}); err != nil {
		return fmt.Errorf("dynamodb put %s: %w", productID, err)
	}
	return nil
}

func quantityOf(attrs map[string]types.AttributeValue) (int, error) {
	var it stockItem
	if err := attributevalue.UnmarshalMap(attrs, &it); err != nil {
		return 0, fmt.Errorf("unmarshal stock item: %w", err)
	}
	return it.Quantity, nil
}
