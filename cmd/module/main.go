//go:build linux

// Package main serves the LIS3DH movement sensor model as a modular resource.
package main

import (
	"context"

	"go.viam.com/utils"

	"go.viam.com/rdk/components/movementsensor"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/module"

	"github.com/viam-modules/lis3dh/lis3dh"
)

func main() {
	utils.ContextualMain(mainWithArgs, module.NewLoggerFromArgs("lis3dh"))
}

func mainWithArgs(ctx context.Context, args []string, logger logging.Logger) error {
	mod, err := module.NewModuleFromArgs(ctx, logger)
	if err != nil {
		return err
	}

	if err := mod.AddModelFromRegistry(ctx, movementsensor.API, lis3dh.Model); err != nil {
		return err
	}

	err = mod.Start(ctx)
	defer mod.Close(ctx)
	if err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}
