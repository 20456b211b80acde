package redis

// Redis key naming conventions for tasker data.
// All keys are prefixed with "tasker:" to avoid collisions.

const keyPrefix = "tasker:"

// invKey returns the Hash key for an invocation: tasker:inv:{id}
func invKey(id string) string { return keyPrefix + "inv:" + id }

// queueKey returns the Sorted Set of pending invocation IDs in a queue:
// tasker:queue:{name}
func queueKey(name string) string { return keyPrefix + "queue:" + name }

// groupKey returns the Sorted Set of member IDs of a group, scored by
// group index: tasker:group:{id}
func groupKey(id string) string { return keyPrefix + "group:" + id }

// invIDsKey is the Set tracking all invocation IDs for enumeration.
const invIDsKey = keyPrefix + "inv_ids"

// queuesKey is the Set of every queue name that has seen an enqueue.
const queuesKey = keyPrefix + "queues"
