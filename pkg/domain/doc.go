/*
Package domain contains the core domain models of the ARC request workflow.

It defines the entities moved through the review pipeline and is kept free of
I/O and persistence concerns.

# Key Entities

  - Request: a homeowner's modification request with its append-only stage history.
  - Status: the fixed set of pipeline stages, two of which are terminal.
  - Notification: a read/unread message tied to a request by identifier.
  - WorkflowTemplate: the canonical step list used to derive progress views.
  - TransitionError: a rejected command, unwrapping to a failure-kind sentinel.
*/
package domain
