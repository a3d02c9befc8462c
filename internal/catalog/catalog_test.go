package catalog_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/plugboard/internal/catalog"
	"github.com/vk/plugboard/internal/module"
	"github.com/vk/plugboard/internal/testutil"
)

// gadget is a second capability so tests can provoke interface conflicts.
type gadget interface {
	module.Provider
	Spin() error
}

type steelGadget struct{}

func (g *steelGadget) Spin() error                   { return nil }
func (g *steelGadget) Close(_ context.Context) error { return nil }

func gadgetDescriptor(area string) module.Descriptor {
	return module.Descriptor{
		Area:          area,
		Identifier:    "steel",
		DisplayName:   "Steel Gadget",
		ProviderType:  reflect.TypeOf((*steelGadget)(nil)),
		InterfaceType: module.InterfaceOf[gadget](),
		Constructors: []module.Constructor{
			func(ctx context.Context, bc module.BuildContext) (module.Provider, error) {
				return &steelGadget{}, nil
			},
		},
	}
}

func TestCatalogLookups(t *testing.T) {
	cat, err := catalog.New(context.Background(), []module.Descriptor{
		testutil.NoopDescriptor(),
		testutil.LoudDescriptor(),
		gadgetDescriptor("gadget"),
	})
	require.NoError(t, err)

	desc, ok := cat.Module(testutil.WidgetArea, "noop")
	require.True(t, ok)
	assert.Equal(t, "Noop Widget", desc.DisplayName)

	_, ok = cat.Module(testutil.WidgetArea, "missing")
	assert.False(t, ok)

	iface, ok := cat.InterfaceType(testutil.WidgetArea)
	require.True(t, ok)
	assert.Equal(t, module.InterfaceOf[testutil.Widget](), iface)

	area, ok := cat.AreaByInterface(module.InterfaceOf[gadget]())
	require.True(t, ok)
	assert.Equal(t, "gadget", area)

	widgets := cat.ModulesByArea(testutil.WidgetArea)
	require.Len(t, widgets, 2)
	assert.Equal(t, "noop", widgets[0].Identifier)
	assert.Equal(t, "loud", widgets[1].Identifier)

	assert.Equal(t, []string{"gadget", testutil.WidgetArea}, cat.Areas())
}

func TestCatalogRejectsTwoInterfacesInOneArea(t *testing.T) {
	_, err := catalog.New(context.Background(), []module.Descriptor{
		testutil.NoopDescriptor(),
		gadgetDescriptor(testutil.WidgetArea),
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, testutil.WidgetArea)
	assert.ErrorContains(t, err, "already registered")
}

func TestCatalogRejectsDuplicateIdentifier(t *testing.T) {
	dup := testutil.LoudDescriptor()
	dup.Identifier = "noop"
	_, err := catalog.New(context.Background(), []module.Descriptor{
		testutil.NoopDescriptor(),
		dup,
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, `identifier "noop"`)
}

func TestCatalogRejectsInterfaceClaimedByTwoAreas(t *testing.T) {
	elsewhere := gadgetDescriptor("other")
	_, err := catalog.New(context.Background(), []module.Descriptor{
		gadgetDescriptor("gadget"),
		elsewhere,
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "declared by both")
}

func TestModulesByAreaReturnsCopy(t *testing.T) {
	cat, err := catalog.New(context.Background(), []module.Descriptor{testutil.NoopDescriptor()})
	require.NoError(t, err)

	widgets := cat.ModulesByArea(testutil.WidgetArea)
	widgets[0].Identifier = "mutated"

	again := cat.ModulesByArea(testutil.WidgetArea)
	assert.Equal(t, "noop", again[0].Identifier)
}
