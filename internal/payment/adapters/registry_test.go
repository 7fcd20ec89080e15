package adapters

import (
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/boostd/internal/payment/domain"
	"github.com/smallbiznis/boostd/internal/payment/domain/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_NormalizesProviderNames(t *testing.T) {
	ctrl := gomock.NewController(t)
	factory := mocks.NewMockAdapterFactory(ctrl)
	adapter := mocks.NewMockPaymentAdapter(ctrl)
	factory.EXPECT().Provider().Return(" Wallet ")
	factory.EXPECT().NewAdapter(gomock.Any()).Return(adapter, nil)

	registry := NewRegistry(factory, nil)
	assert.True(t, registry.ProviderExists("WALLET"))
	assert.False(t, registry.ProviderExists("external"))
	assert.Equal(t, []string{"wallet"}, registry.Providers())

	got, err := registry.NewAdapter("wallet", domain.AdapterConfig{})
	require.NoError(t, err)
	assert.Same(t, adapter, got)
}

func TestRegistry_UnknownProvider(t *testing.T) {
	ctrl := gomock.NewController(t)
	blank := mocks.NewMockAdapterFactory(ctrl)
	blank.EXPECT().Provider().Return("  ")

	registry := NewRegistry(blank)
	_, err := registry.NewAdapter("wallet", domain.AdapterConfig{})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	var empty *Registry
	assert.False(t, empty.ProviderExists("wallet"))
	_, err = empty.NewAdapter("wallet", domain.AdapterConfig{})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}
