// Command sfsbd hosts a stateful session bean container behind a small
// HTTP API.
//
// Carts created through the API are held in memory, written to the
// session directory when they change, passivated after the inactivity
// timeout and destroyed once they exceed the maximum age.
//
// Usage:
//
//	sfsbd -config /etc/sfsb/sfsbd.yaml
//
// Every configuration key may be overridden from the environment with the
// SFSB_ prefix and "__" between levels, e.g. SFSB_CONTAINER__BACKEND=badger.
package main
