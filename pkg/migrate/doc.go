/*
Package migrate moves legacy filesystem collections into the embedded
database.

Earlier deployments stored each collection as a directory of files. The
migration copies every entry of every collection into its BoltDB bucket and
clears the source directory on success. All collections migrate in
parallel; the first failure cancels the rest and fails startup, leaving the
sources intact for the next attempt. Running against already-emptied
sources is a no-op, so the migration is safe to run on every boot.

The serve command runs Default migrations automatically; the standalone
migrate command exposes the same step for operators who want to migrate
and inspect before serving.
*/
package migrate
