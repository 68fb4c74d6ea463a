package store

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/fpang/tripstory/internal/apperr"
	"github.com/fpang/tripstory/internal/journey"
)

// stepClock returns a clock that advances one millisecond per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func sampleRoute() *journey.Route {
	return &journey.Route{
		Start: "南宁",
		End:   "桂林",
		Waypoints: []journey.Waypoint{
			{Name: "南宁", City: "南宁", Lat: 22.817, Lng: 108.366, Images: []string{journey.StartImg}},
			{Name: "象鼻山", City: "桂林", Lat: 25.2675, Lng: 110.2964, Stay: 3600, Images: []string{journey.PlaceholderImg}, PhotoURL: "https://img.example.com/a.jpg"},
		},
		Path: [][2]float64{{108.366, 22.817}, {110.2964, 25.2675}},
	}
}

// exerciseStore runs the behaviour every Store must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	entries, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List on empty store: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty gallery, got %d entries", len(entries))
	}

	urls := []string{"https://gen.example.com/1.jpg", "https://gen.example.com/2.jpg", "https://gen.example.com/3.jpg"}
	for _, u := range urls {
		if err := s.Append(ctx, u); err != nil {
			t.Fatalf("Append(%s): %v", u, err)
		}
	}
	if err := s.Append(ctx, "   "); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error for blank URL, got %v", err)
	}

	entries, err = s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff(urls, URLs(entries)); diff != "" {
		t.Errorf("gallery mismatch (-want +got):\n%s", diff)
	}
	for i, e := range entries {
		if e.ID == "" {
			t.Errorf("entry %d has no id", i)
		}
		if i > 0 && e.CreatedAt < entries[i-1].CreatedAt {
			t.Errorf("entries out of order at %d", i)
		}
	}

	r, err := s.GetRoute(ctx)
	if err != nil || r != nil {
		t.Fatalf("expected no route, got %v, %v", r, err)
	}
	want := sampleRoute()
	if err := s.PutRoute(ctx, want); err != nil {
		t.Fatalf("PutRoute: %v", err)
	}
	got, err := s.GetRoute(ctx)
	if err != nil {
		t.Fatalf("GetRoute: %v", err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("route mismatch (-want +got):\n%s", diff)
	}

	want.End = "阳朔"
	if err := s.PutRoute(ctx, want); err != nil {
		t.Fatalf("PutRoute overwrite: %v", err)
	}
	got, _ = s.GetRoute(ctx)
	if got == nil || got.End != "阳朔" {
		t.Errorf("expected overwritten route, got %+v", got)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	s.now = stepClock()
	exerciseStore(t, s)
}

func TestMemoryStore_RouteIsCopied(t *testing.T) {
	s := NewMemoryStore()
	r := sampleRoute()
	s.PutRoute(context.Background(), r)
	r.Waypoints[1].Name = "mutated"

	got, _ := s.GetRoute(context.Background())
	if got.Waypoints[1].Name != "象鼻山" {
		t.Errorf("stored route aliased caller's route: %s", got.Waypoints[1].Name)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "tripstory.db"), "")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	s.now = stepClock()
	exerciseStore(t, s)
}

func TestSQLiteStore_OwnersAreIsolated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tripstory.db")
	ctx := context.Background()

	alice, err := OpenSQLite(ctx, path, "alice")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	alice.Append(ctx, "https://gen.example.com/alice.jpg")
	alice.Close()

	bob, err := OpenSQLite(ctx, path, "bob")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer bob.Close()
	entries, err := bob.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected bob's gallery empty, got %v", URLs(entries))
	}
}

// fakeDynamo is an in-memory DynamoAPI supporting the key shapes DynamoStore
// uses. Queries return at most pageSize items per call.
type fakeDynamo struct {
	mu       sync.Mutex
	items    map[string]map[string]types.AttributeValue
	pageSize int
	queries  int
	putErr   error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue), pageSize: 2}
}

func attrS(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDynamo) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[attrS(in.Item["PK"])+"|"+attrS(in.Item["SK"])] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[attrS(in.Key["PK"])+"|"+attrS(in.Key["SK"])]}, nil
}

func (f *fakeDynamo) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++

	pk := attrS(in.ExpressionAttributeValues[":pk"])
	prefix := attrS(in.ExpressionAttributeValues[":skPrefix"])
	var sks []string
	for _, item := range f.items {
		sk := attrS(item["SK"])
		if attrS(item["PK"]) == pk && strings.HasPrefix(sk, prefix) {
			sks = append(sks, sk)
		}
	}
	sort.Strings(sks)

	start := 0
	if in.ExclusiveStartKey != nil {
		after := attrS(in.ExclusiveStartKey["SK"])
		start = sort.SearchStrings(sks, after) + 1
	}
	end := min(start+f.pageSize, len(sks))

	out := &dynamodb.QueryOutput{}
	for _, sk := range sks[start:end] {
		out.Items = append(out.Items, f.items[pk+"|"+sk])
	}
	if end < len(sks) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: sks[end-1]},
		}
	}
	return out, nil
}

func TestDynamoStore(t *testing.T) {
	fake := newFakeDynamo()
	s := NewDynamoStore(fake, "tripstory", "")
	s.now = stepClock()
	exerciseStore(t, s)

	// Three photos with a page size of two need a second page.
	if fake.queries < 3 {
		t.Errorf("expected paginated queries, got %d calls", fake.queries)
	}
	if _, ok := fake.items["GALLERY#default|ROUTE"]; !ok {
		t.Error("expected route under GALLERY#default|ROUTE")
	}
}

func TestDynamoStore_PutFailureIsTransport(t *testing.T) {
	fake := newFakeDynamo()
	fake.putErr = errors.New("ProvisionedThroughputExceededException")
	s := NewDynamoStore(fake, "tripstory", "alice")

	err := s.Append(context.Background(), "https://gen.example.com/1.jpg")
	if !apperr.Is(err, apperr.KindTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !strings.Contains(err.Error(), "PK=GALLERY#alice") {
		t.Errorf("error should name the key: %v", err)
	}
}

func TestPhotoSKSortsChronologically(t *testing.T) {
	early := photoSK(Entry{ID: "b", CreatedAt: 999})
	late := photoSK(Entry{ID: "a", CreatedAt: 1000})
	if early >= late {
		t.Errorf("expected %s < %s", early, late)
	}
}
