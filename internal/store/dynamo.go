package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/tripstory/internal/apperr"
	"github.com/fpang/tripstory/internal/journey"
)

// DynamoDB key constants for the single-table design. All records of an
// owner share the partition key GALLERY#{owner}; photo sort keys embed a
// zero-padded timestamp so a Query returns them oldest first.
const (
	pkPrefix = "GALLERY#"
	skPhoto  = "PHOTO#"
	skRoute  = "ROUTE"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore implements Store using AWS DynamoDB.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	owner     string
	now       func() time.Time
}

// Compile-time interface check.
var _ Store = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for owner's records in tableName.
func NewDynamoStore(client DynamoAPI, tableName, owner string) *DynamoStore {
	if owner == "" {
		owner = DefaultOwner
	}
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		owner:     owner,
		now:       time.Now,
	}
}

// routeRecord is the stored form of the confirmed route.
type routeRecord struct {
	Route     journey.Route `dynamodbav:"route"`
	UpdatedAt int64         `dynamodbav:"updatedAt"`
}

// --- Internal helpers ---

func (s *DynamoStore) pk() string {
	return pkPrefix + s.owner
}

func photoSK(e Entry) string {
	return fmt.Sprintf("%s%013d#%s", skPhoto, e.CreatedAt, e.ID)
}

// putItem marshals a domain object and writes it with PK and SK.
func (s *DynamoStore) putItem(ctx context.Context, sk string, data any) error {
	item, err := attributevalue.MarshalMap(data)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	pk := s.pk()
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return apperr.Transport("dynamodb put", fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err))
	}
	return nil
}

// getItem reads a single item and unmarshals it into out. It returns false
// if the item does not exist.
func (s *DynamoStore) getItem(ctx context.Context, sk string, out any) (bool, error) {
	pk := s.pk()
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return false, apperr.Transport("dynamodb get", fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err))
	}
	if result.Item == nil {
		return false, nil
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return false, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, sk, err)
	}
	return true, nil
}

// queryBySKPrefix returns all of the owner's items whose SK begins with
// skPrefix, following pagination.
func (s *DynamoStore) queryBySKPrefix(ctx context.Context, skPrefix string) ([]map[string]types.AttributeValue, error) {
	pk := s.pk()
	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :skPrefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":       &types.AttributeValueMemberS{Value: pk},
			":skPrefix": &types.AttributeValueMemberS{Value: skPrefix},
		},
	}

	var allItems []map[string]types.AttributeValue
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, apperr.Transport("dynamodb query", fmt.Errorf("Query PK=%s SK prefix=%s: %w", pk, skPrefix, err))
		}
		allItems = append(allItems, result.Items...)
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return allItems, nil
}

// --- Gallery ---

func (s *DynamoStore) Append(ctx context.Context, url string) error {
	e, err := newEntry(url, s.now())
	if err != nil {
		return err
	}
	if err := s.putItem(ctx, photoSK(e), e); err != nil {
		return err
	}
	log.Debug().Str("owner", s.owner).Str("id", e.ID).Msg("Gallery photo stored in DynamoDB")
	return nil
}

func (s *DynamoStore) List(ctx context.Context) ([]Entry, error) {
	items, err := s.queryBySKPrefix(ctx, skPhoto)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal gallery: %w", err)
	}
	return entries, nil
}

// --- Route ---

func (s *DynamoStore) PutRoute(ctx context.Context, r *journey.Route) error {
	if r == nil {
		return apperr.Validation("put route", journey.ErrNoRoute)
	}
	return s.putItem(ctx, skRoute, routeRecord{Route: *r, UpdatedAt: s.now().Unix()})
}

func (s *DynamoStore) GetRoute(ctx context.Context) (*journey.Route, error) {
	var rec routeRecord
	found, err := s.getItem(ctx, skRoute, &rec)
	if err != nil || !found {
		return nil, err
	}
	return &rec.Route, nil
}
