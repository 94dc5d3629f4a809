/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/familystore/datastore"
	"github.com/suparena/familystore/datastore/query"
	"github.com/suparena/familystore/storagemodels"
)

// NewQueryPager translates the query into a paged Query when it pins the partition key,
// and into a paged Scan otherwise.
func (ct *Container) NewQueryPager(spec storagemodels.QuerySpec, opts ...storagemodels.QueryOption) datastore.Pager {
	options := storagemodels.ApplyQueryOptions(opts...)
	return &pager{
		container: ct,
		spec:      spec,
		params:    datastore.MergeParameters(spec, options),
		pageSize:  options.PageSize,
	}
}

type pager struct {
	container *Container
	spec      storagemodels.QuerySpec
	params    []storagemodels.QueryParameter
	pageSize  int32

	started bool
	done    bool
	page    int
	query   *dynamodb.QueryPaginator
	scan    *dynamodb.ScanPaginator
}

func (p *pager) More() bool {
	return !p.done
}

func (p *pager) NextPage(ctx context.Context) (storagemodels.QueryPage, error) {
	if p.done {
		return storagemodels.QueryPage{}, fmt.Errorf("query %q has no more pages", p.spec.Text)
	}
	if !p.started {
		p.started = true
		if err := p.prepare(); err != nil {
			p.done = true
			return storagemodels.QueryPage{}, err
		}
	}

	var (
		items    []map[string]types.AttributeValue
		consumed *types.ConsumedCapacity
	)
	if p.query != nil {
		out, err := p.query.NextPage(ctx)
		if err != nil {
			p.done = true
			return storagemodels.QueryPage{}, p.container.client.mapError(err, "container", p.container.id)
		}
		items, consumed = out.Items, out.ConsumedCapacity
		p.done = !p.query.HasMorePages()
	} else {
		out, err := p.scan.NextPage(ctx)
		if err != nil {
			p.done = true
			return storagemodels.QueryPage{}, p.container.client.mapError(err, "container", p.container.id)
		}
		items, consumed = out.Items, out.ConsumedCapacity
		p.done = !p.scan.HasMorePages()
	}
	p.page++

	docs := make([][]byte, 0, len(items))
	for _, item := range items {
		doc, err := itemToJSON(item)
		if err != nil {
			return storagemodels.QueryPage{}, err
		}
		docs = append(docs, doc)
	}

	return storagemodels.QueryPage{
		Items:         docs,
		RequestCharge: capacityUnits(consumed),
		PageNumber:    p.page,
	}, nil
}

func (p *pager) prepare() error {
	stmt, err := query.Parse(p.spec.Text)
	if err != nil {
		return err
	}
	stmt, err = stmt.Bind(p.params)
	if err != nil {
		return err
	}
	expr, err := buildExpression(stmt, p.container.pkAttr)
	if err != nil {
		return err
	}

	table := aws.String(p.container.table)
	limit := func(o *dynamodb.QueryPaginatorOptions) { o.Limit = p.pageSize }
	if expr.keyCondition != nil {
		p.query = dynamodb.NewQueryPaginator(p.container.client.api, &dynamodb.QueryInput{
			TableName:                 table,
			KeyConditionExpression:    expr.keyCondition,
			FilterExpression:          expr.filter,
			ExpressionAttributeNames:  expr.names,
			ExpressionAttributeValues: expr.values,
			ConsistentRead:            aws.Bool(true),
			ReturnConsumedCapacity:    types.ReturnConsumedCapacityTotal,
		}, limit)
		return nil
	}

	p.scan = dynamodb.NewScanPaginator(p.container.client.api, &dynamodb.ScanInput{
		TableName:                 table,
		FilterExpression:          expr.filter,
		ExpressionAttributeNames:  expr.names,
		ExpressionAttributeValues: expr.values,
		ConsistentRead:            aws.Bool(true),
		ReturnConsumedCapacity:    types.ReturnConsumedCapacityTotal,
	}, func(o *dynamodb.ScanPaginatorOptions) { o.Limit = p.pageSize })
	return nil
}
