// Package control provides input programs for dynamical systems.
//
// Controllers implement the [dynamo.Controller] interface and are evaluated
// once per step, before the integrator advances the state:
//
//   - [Step]: constant reactivity inserted at t=0 and held for the run
//
// # Usage
//
//	rho := control.NewStep(0.002)
//	sim := dynamo.New(dyn, integ, rho)
package control
