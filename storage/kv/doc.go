// Package kv provides an interface for implementing
// kv drivers that can be used to build more complex storage
// interfaces.
//
// A kv plugin is a factory for root store instances. A root store
// contains zero or more stores and stores contain zero or more
// partitions. Each store operates independently from other stores. Likewise,
// partitions within a store operate independently from other partitions.
// Within a partition transactions are strictly serializable.
//
//  - Root Store
//    - Store A
//      - Partition 1
//        - key1: abc
//        - key2: def
//      - Partition 2
//    - Store B
//      - Partition 1
//
// Each store acts like a namespace, allowing different components that
// require a kv storage interface to have their own store without needing
// to worry about stepping on the toes of other components.
package kv
