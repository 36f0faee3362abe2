//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/mapsync/internal/config"
	"github.com/zeusync/mapsync/internal/core/render"
)

func InitializeApp(cfg config.Config, drawer render.Drawer, hooks Hooks) (*App, func(), error) {
	wire.Build(ProviderSet)
	return nil, nil, nil
}
