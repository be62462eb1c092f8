package storagemock

import (
	"context"

	"github.com/raterudder/solarprep/pkg/storage"
	"github.com/raterudder/solarprep/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) UpsertSeries(ctx context.Context, installationID string, channel types.Channel, readings []types.Reading) error {
	args := m.Called(ctx, installationID, channel, readings)
	return args.Error(0)
}

func (m *MockDatabase) GetSeries(ctx context.Context, installationID string, channel types.Channel) ([]types.Reading, error) {
	args := m.Called(ctx, installationID, channel)
	if r := args.Get(0); r != nil {
		return r.([]types.Reading), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) UpsertCapacities(ctx context.Context, capacities []types.Capacity) error {
	args := m.Called(ctx, capacities)
	return args.Error(0)
}

func (m *MockDatabase) GetCapacity(ctx context.Context, installationID string) (types.Capacity, error) {
	args := m.Called(ctx, installationID)
	if len(args) > 0 {
		return args.Get(0).(types.Capacity), args.Error(1)
	}
	return types.Capacity{}, storage.ErrCapacityNotFound
}

func (m *MockDatabase) GetCapacities(ctx context.Context) ([]types.Capacity, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.([]types.Capacity), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
