/*
Package ports defines the driven ports (interfaces) of the ARC workflow engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various storage backends, permission oracles and
template sources.

# Key Interfaces

  - RequestStore: persists ARC requests and their history.
  - NotificationStore: persists notifications.
  - Authorizer: answers "who is calling" and "may they do this".
  - TemplateLoader: resolves workflow templates by classification.
  - DistributedLocker: non-blocking locks for multi-replica deployments.
*/
package ports
