// Package mocks provides test doubles for the travelpayouts client.
package mocks

import (
	"context"

	travelpayouts "github.com/sells-group/farecast/pkg/travelpayouts"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Dataset provides a mock function with given fields: ctx, name
func (_m *MockClient) Dataset(ctx context.Context, name string) ([]map[string]any, error) {
	ret := _m.Called(ctx, name)

	if len(ret) == 0 {
		panic("no return value specified for Dataset")
	}

	var r0 []map[string]any
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]map[string]any, error)); ok {
		return rf(ctx, name)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) []map[string]any); ok {
		r0 = rf(ctx, name)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]map[string]any)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, name)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// PricesForDates provides a mock function with given fields: ctx, req
func (_m *MockClient) PricesForDates(ctx context.Context, req travelpayouts.PricesRequest) (*travelpayouts.PricesResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for PricesForDates")
	}

	var r0 *travelpayouts.PricesResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, travelpayouts.PricesRequest) (*travelpayouts.PricesResponse, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, travelpayouts.PricesRequest) *travelpayouts.PricesResponse); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*travelpayouts.PricesResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, travelpayouts.PricesRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
