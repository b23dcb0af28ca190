/*
Package session serializes access to stored conversations.

A Manager wraps a ports.StateStore with per-conversation locks. Within one process
the locks are reference-counted mutexes; across replicas an optional
ports.DistributedLocker (such as the Redis locker) is taken as well.
*/
package session
