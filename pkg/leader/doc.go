/*
Package leader elects a single scaler replica to own the tick, using
hashicorp/raft. The scaler's control loop is meant to run single-threaded
against the cloud provider; this package gives an HA deployment a way to
run several scaler processes and guarantee only one of them calls
Tick() at a time, without the FSM itself carrying any cluster state
beyond "who is leader right now".
*/
package leader
