package env

const (
	// Prefix is the prefix of every bocrates environment variable
	Prefix = "BOCRATES_"

	// DBURLSuffix is the suffix of the Postgres DSN variable
	DBURLSuffix = "DB_URL"
)
