// Package tasks runs multi-stage jobs against a conversation, checkpointing each stage.
//
// A task moves starting -> running -> completed | error. Every stage is one flow-engine
// pass under the conversation lock; its status is published to the conversation as a
// task_state signal. Run blocks; Start hands the job to a worker and reports on a channel.
package tasks
