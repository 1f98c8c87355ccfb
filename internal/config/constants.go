package config

// DefaultDatabasePath is the default path for the application database
const DefaultDatabasePath = "./readily-reads.db"

// APIVersion is reported by the health endpoint
const APIVersion = "v1"
