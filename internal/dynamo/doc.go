// Package dynamo provides core simulation primitives for dynamical systems.
//
// The package defines the fundamental interfaces and types for numerical
// simulation of ordinary differential equations (ODEs):
//
//   - [State]: vector representing system state
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: fixed-step numerical integrator interface
//   - [Controller]: input program evaluated before every step
//   - [Simulator]: orchestrates simulation runs
//
// # Example
//
//	dyn := kinetics.NewModel(kinetics.DefaultConstants())
//	integ := integrators.NewRK4()
//	sim := dynamo.New(dyn, integ, control.NewStep(0.002))
//	result, _ := sim.Run(ctx, x0, dynamo.Config{Dt: 1e-3, Duration: 5})
//
// # Thread Safety
//
// Simulator instances are NOT thread-safe: integrators keep scratch
// buffers between steps. Build one simulator per goroutine.
package dynamo
