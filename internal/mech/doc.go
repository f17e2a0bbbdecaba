// Package mech models the mechanical vibration modes of a superconducting
// cavity as second-order resonators coupling radiation pressure (|Vc|^2)
// to frequency detuning, and provides their exact zero-order-hold
// discretization at the simulation timestep.
//
// Each mode (f, Q, K) becomes a 2x2 continuous block
//
//	x' = [[0, 1], [-w^2, -w/Q]] x + [0, K*w^2]^T u
//	y  = [-2*pi, 0] x
//
// with w = 2*pi*f, input u the squared cavity voltage magnitude in MV^2,
// and output y the mode's detuning contribution in rad/s. K is the static
// detuning in Hz per MV^2; the sign convention is that Lorentz force
// detuning pulls the resonance downward.
package mech
