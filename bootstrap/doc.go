// Package bootstrap runs the application lifecycle: typed configuration,
// component registration, startup and shutdown hooks, signal handling and the
// startup summary.
//
//	app, err := bootstrap.NewApp(cfg)
//	app.RegisterComponent(sseComponent)
//	app.RegisterComponent(serverComponent)
//	app.OnReady(func(ctx context.Context) error { ... })
//	err = app.Run(ctx)
//
// Components start in registration order and stop in reverse.
package bootstrap
