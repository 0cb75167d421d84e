// Package dynamo implements session.Repository and session.Rotator on Amazon
// DynamoDB.
//
// The table is keyed by the hex token hash (partition key "token_hash"), so
// lookups are a single consistent GetItem and no index is required. Rotation
// is one TransactWriteItems call: a conditional update revokes the old item
// and a conditional put creates the new one.
//
// Set the table's TTL attribute to "ttl" to let DynamoDB reap sessions after
// their retention period.
package dynamo
