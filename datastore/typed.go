/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/suparena/familystore/storagemodels"
)

// CreateItem encodes item as JSON and inserts it under partitionKey.
func CreateItem[T any](ctx context.Context, c Container, partitionKey string, item T) (storagemodels.ItemResponse, error) {
	doc, err := json.Marshal(item)
	if err != nil {
		return storagemodels.ItemResponse{}, fmt.Errorf("failed to marshal item: %w", err)
	}
	return c.CreateItem(ctx, partitionKey, doc)
}

// ReadItem fetches one document and decodes it into T.
func ReadItem[T any](ctx context.Context, c Container, partitionKey, id string) (*T, storagemodels.ItemResponse, error) {
	resp, err := c.ReadItem(ctx, partitionKey, id)
	if err != nil {
		return nil, resp, err
	}
	result := new(T)
	if err := json.Unmarshal(resp.Value, result); err != nil {
		return nil, resp, fmt.Errorf("failed to unmarshal item %q: %w", id, err)
	}
	return result, resp, nil
}

// FeedResponse is one decoded page of query results.
type FeedResponse[T any] struct {
	Items         []T
	RequestCharge float64
	ActivityID    string
	PageNumber    int
}

// FeedIterator decodes query pages into T.
type FeedIterator[T any] struct {
	pager    Pager
	progress func(storagemodels.QueryProgress)
	state    storagemodels.QueryProgress
}

// QueryItems starts a query whose documents are decoded into T.
func QueryItems[T any](c Container, spec storagemodels.QuerySpec, opts ...storagemodels.QueryOption) *FeedIterator[T] {
	options := storagemodels.ApplyQueryOptions(opts...)
	return &FeedIterator[T]{
		pager:    c.NewQueryPager(spec, opts...),
		progress: options.ProgressHandler,
	}
}

// HasMoreResults reports whether ReadNext has another page to fetch.
func (it *FeedIterator[T]) HasMoreResults() bool {
	return it.pager.More()
}

// ReadNext fetches and decodes the next page.
func (it *FeedIterator[T]) ReadNext(ctx context.Context) (FeedResponse[T], error) {
	if it.state.StartTime.IsZero() {
		it.state.StartTime = time.Now()
	}

	page, err := it.pager.NextPage(ctx)
	if err != nil {
		return FeedResponse[T]{}, err
	}

	items := make([]T, 0, len(page.Items))
	for i, raw := range page.Items {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return FeedResponse[T]{}, fmt.Errorf("failed to unmarshal document %d of page %d: %w", i, page.PageNumber, err)
		}
		items = append(items, item)
	}

	it.state.PagesRead++
	it.state.ItemsRead += int64(len(items))
	it.state.RequestCharge += page.RequestCharge
	if it.progress != nil {
		it.progress(it.state)
	}

	return FeedResponse[T]{
		Items:         items,
		RequestCharge: page.RequestCharge,
		ActivityID:    page.ActivityID,
		PageNumber:    page.PageNumber,
	}, nil
}

// ReadAll drains the iterator.
func (it *FeedIterator[T]) ReadAll(ctx context.Context) ([]T, error) {
	var all []T
	for it.HasMoreResults() {
		resp, err := it.ReadNext(ctx)
		if err != nil {
			return all, err
		}
		all = append(all, resp.Items...)
	}
	return all, nil
}
