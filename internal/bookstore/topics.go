package bookstore

const (
	TopicOrderCreated = "bookstore.order.created"
	TopicKycBound     = "bookstore.kyc.bound"
	TopicCatalog      = "bookstore.catalog"
)

// PartitionKey keeps every event of one aggregate on one partition.
func PartitionKey(id string) []byte { return []byte(id) }
