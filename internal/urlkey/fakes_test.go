package urlkey

import (
	"context"
	"errors"

	"github.com/yanizio/adept-urlrewrite/internal/catalog"
)

type valueKey struct {
	storeID int64
	value   string
}

type entityKey struct {
	storeID  int64
	entityID int64
}

// fakeValues is an in-memory url_key attribute table.
type fakeValues struct {
	byValue  map[valueKey]int64
	byEntity map[entityKey]string
	queries  int
	err      error
}

func newFakeValues() *fakeValues {
	return &fakeValues{byValue: map[valueKey]int64{}, byEntity: map[entityKey]string{}}
}

func (f *fakeValues) put(storeID, entityID int64, value string) {
	f.byValue[valueKey{storeID, value}] = entityID
	f.byEntity[entityKey{storeID, entityID}] = value
}

func (f *fakeValues) FindByCodeTypeStoreAndValue(_ context.Context, code string, _ int, storeID int64, value string) (*catalog.AttributeValue, error) {
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	if code != catalog.AttributeCodeURLKey {
		return nil, errors.New("unexpected attribute " + code)
	}
	id, ok := f.byValue[valueKey{storeID, value}]
	if !ok {
		return nil, nil
	}
	return &catalog.AttributeValue{EntityID: id, AttributeCode: code, StoreID: storeID, Value: value}, nil
}

func (f *fakeValues) FindByEntityCodeAndStore(_ context.Context, entityID int64, code string, _ int, storeID int64) (*catalog.AttributeValue, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.byEntity[entityKey{storeID, entityID}]
	if !ok {
		return nil, nil
	}
	return &catalog.AttributeValue{EntityID: entityID, AttributeCode: code, StoreID: storeID, Value: v}, nil
}
