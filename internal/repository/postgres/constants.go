package postgres

import (
	"fmt"
	"time"
)

const (
	poolHealthCheckPeriod = time.Minute
	poolMaxConnLifetime   = time.Hour
	poolMaxConnIdleTime   = 30 * time.Minute
	dbPingTimeout         = 5 * time.Second

	lockKeyTreeFmt     = "drive:tree:%s"
	lockKeySiblingsFmt = "drive:siblings:%s:%s"

	constraintSiblingName = "entries_sibling_name_key"
	constraintIdempotency = "entries_idempotency_key"
	constraintStorageKey  = "entries_storage_key"
	constraintShareFileID = "share_codes_file_id_key"

	errEntryNotFound     = "entry not found"
	errRootNotFound      = "root folder not found"
	errShareCodeNotFound = "share code not found"
	errUsageNotFound     = "quota usage not found"
	errOrphanNotFound    = "cleanup job not found"
	errSiblingNameTaken  = "an entry with this name already exists in the folder"
	errIdempotencyTaken  = "an entry with this idempotency key already exists"
	errStorageKeyTaken   = "another entry already references this object"
	errShareFileTaken    = "file already has a share code"
	errDuplicateRow      = "row already exists"

	errFailedParseDatabaseConfigFmt  = "failed to parse database config: %w"
	errFailedCreateConnectionPoolFmt = "failed to create connection pool: %w"
	errFailedPingDatabaseFmt         = "failed to ping database: %w"
	errFailedMigrateFmt              = "failed to apply schema: %w"

	errFailedStartTransactionFmt  = "failed to start transaction: %w"
	errFailedCommitTransactionFmt = "failed to commit transaction: %w"
	errFailedAcquireLockFmt       = "failed to acquire lock: %w"

	errFailedCreateEntryFmt = "failed to create entry: %w"
	errFailedGetEntryFmt    = "failed to get entry: %w"
	errFailedListEntriesFmt = "failed to list entries: %w"
	errFailedScanEntryFmt   = "failed to scan entry: %w"
	errFailedUpdateEntryFmt = "failed to update entry: %w"
	errFailedDeleteEntryFmt = "failed to delete entry: %w"
	errFailedSumSizesFmt    = "failed to sum file sizes: %w"

	errFailedCreateShareCodeFmt = "failed to create share code: %w"
	errFailedGetShareCodeFmt    = "failed to get share code: %w"
	errFailedDeleteShareCodeFmt = "failed to delete share code: %w"

	errFailedEnsureUsageFmt = "failed to ensure quota usage: %w"
	errFailedGetUsageFmt    = "failed to get quota usage: %w"
	errFailedUpdateUsageFmt = "failed to update quota usage: %w"

	errFailedEnqueueOrphanFmt = "failed to enqueue cleanup job: %w"
	errFailedGetOrphanFmt     = "failed to get cleanup job: %w"
	errFailedListOrphansFmt   = "failed to list cleanup jobs: %w"
	errFailedScanOrphanFmt    = "failed to scan cleanup job: %w"
	errFailedUpdateOrphanFmt  = "failed to update cleanup job: %w"
	errFailedDeleteOrphanFmt  = "failed to delete cleanup job: %w"
)

var (
	errFailedAcquireLock          = func(err error) error { return fmt.Errorf(errFailedAcquireLockFmt, err) }
	errFailedCommitTransaction    = func(err error) error { return fmt.Errorf(errFailedCommitTransactionFmt, err) }
	errFailedCreateConnectionPool = func(err error) error { return fmt.Errorf(errFailedCreateConnectionPoolFmt, err) }
	errFailedCreateEntry          = func(err error) error { return fmt.Errorf(errFailedCreateEntryFmt, err) }
	errFailedCreateShareCode      = func(err error) error { return fmt.Errorf(errFailedCreateShareCodeFmt, err) }
	errFailedDeleteEntry          = func(err error) error { return fmt.Errorf(errFailedDeleteEntryFmt, err) }
	errFailedDeleteOrphan         = func(err error) error { return fmt.Errorf(errFailedDeleteOrphanFmt, err) }
	errFailedDeleteShareCode      = func(err error) error { return fmt.Errorf(errFailedDeleteShareCodeFmt, err) }
	errFailedEnqueueOrphan        = func(err error) error { return fmt.Errorf(errFailedEnqueueOrphanFmt, err) }
	errFailedEnsureUsage          = func(err error) error { return fmt.Errorf(errFailedEnsureUsageFmt, err) }
	errFailedGetEntry             = func(err error) error { return fmt.Errorf(errFailedGetEntryFmt, err) }
	errFailedGetOrphan            = func(err error) error { return fmt.Errorf(errFailedGetOrphanFmt, err) }
	errFailedGetShareCode         = func(err error) error { return fmt.Errorf(errFailedGetShareCodeFmt, err) }
	errFailedGetUsage             = func(err error) error { return fmt.Errorf(errFailedGetUsageFmt, err) }
	errFailedListEntries          = func(err error) error { return fmt.Errorf(errFailedListEntriesFmt, err) }
	errFailedListOrphans          = func(err error) error { return fmt.Errorf(errFailedListOrphansFmt, err) }
	errFailedMigrate              = func(err error) error { return fmt.Errorf(errFailedMigrateFmt, err) }
	errFailedParseDatabaseConfig  = func(err error) error { return fmt.Errorf(errFailedParseDatabaseConfigFmt, err) }
	errFailedPingDatabase         = func(err error) error { return fmt.Errorf(errFailedPingDatabaseFmt, err) }
	errFailedScanEntry            = func(err error) error { return fmt.Errorf(errFailedScanEntryFmt, err) }
	errFailedScanOrphan           = func(err error) error { return fmt.Errorf(errFailedScanOrphanFmt, err) }
	errFailedStartTransaction     = func(err error) error { return fmt.Errorf(errFailedStartTransactionFmt, err) }
	errFailedSumSizes             = func(err error) error { return fmt.Errorf(errFailedSumSizesFmt, err) }
	errFailedUpdateEntry          = func(err error) error { return fmt.Errorf(errFailedUpdateEntryFmt, err) }
	errFailedUpdateOrphan         = func(err error) error { return fmt.Errorf(errFailedUpdateOrphanFmt, err) }
	errFailedUpdateUsage          = func(err error) error { return fmt.Errorf(errFailedUpdateUsageFmt, err) }
)
