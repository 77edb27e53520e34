// Package bootenv adapts an OSTree sysroot to the engine's BootEnvironment
// interface by driving `ostree admin`. Deployment representation on disk,
// bootloader entry management, and rollback retention stay owned by ostree.
package bootenv
