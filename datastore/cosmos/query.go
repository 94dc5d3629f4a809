/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package cosmos

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/suparena/familystore/datastore"
	"github.com/suparena/familystore/datastore/query"
	storeerrors "github.com/suparena/familystore/errors"
	"github.com/suparena/familystore/storagemodels"
)

// NewQueryPager runs the query against the logical partition named by its partition key equality.
// The query text goes to the service as written.
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
	inner   *runtime.Pager[azcosmos.QueryItemsResponse]
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

	resp, err := p.inner.NextPage(ctx)
	if err != nil {
		p.done = true
		return storagemodels.QueryPage{}, mapError(err, p.container.endpoint, "container", p.container.id)
	}
	p.done = !p.inner.More()
	p.page++

	return storagemodels.QueryPage{
		Items:         resp.Items,
		RequestCharge: float64(resp.RequestCharge),
		ActivityID:    resp.ActivityID,
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
	value, ok := stmt.PartitionValue(p.container.pkPath)
	if !ok {
		return storeerrors.NewUnsupportedError(BackendName, "queries without an equality on "+p.container.pkPath)
	}
	pk, err := partitionKeyOf(value)
	if err != nil {
		return err
	}

	qo := &azcosmos.QueryOptions{PageSizeHint: p.pageSize}
	for _, param := range p.params {
		qo.QueryParameters = append(qo.QueryParameters, azcosmos.QueryParameter{Name: paramName(param.Name), Value: param.Value})
	}
	p.inner = p.container.api.NewQueryItemsPager(p.spec.Text, pk, qo)
	return nil
}

func partitionKeyOf(v any) (azcosmos.PartitionKey, error) {
	switch val := v.(type) {
	case string:
		return azcosmos.NewPartitionKeyString(val), nil
	case float64:
		return azcosmos.NewPartitionKeyNumber(val), nil
	case bool:
		return azcosmos.NewPartitionKeyBool(val), nil
	default:
		return azcosmos.PartitionKey{}, storeerrors.NewUnsupportedError(BackendName, fmt.Sprintf("partition key value %v", v))
	}
}

func paramName(name string) string {
	if len(name) > 0 && name[0] == '@' {
		return name
	}
	return "@" + name
}
