/*
Package ports defines the driven ports (interfaces) of the parley engine.

# Key Interfaces

  - Provider: the LLM boundary queried by the message, thinking and tool_result stages.
  - Processor: runs one signal through the flow engine.
  - StateStore: persists conversation stores.
  - DistributedLocker: cross-process locking for a conversation.
*/
package ports
