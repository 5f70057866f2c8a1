//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/velprakashr08-max/Frutify/internal/app"
)

func InitializeApp() (*app.App, error) {
	panic(wire.Build(
		ConfigSet,
		ObservabilitySet,
		RuntimeInfraSet,
		StoreSet,
		WorkerSet,
		OpsSet,
		AppSet,
	))
}

func InitializeMigrationRunner() (*MigrationRunner, error) {
	panic(wire.Build(
		ConfigSet,
		provideLogger,
		provideDB,
		NewMigrationRunner,
	))
}
