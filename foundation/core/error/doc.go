// Package error provides coded errors for Iguana.
//
// Services wrap lower level failures with a code so that the transport
// layers can map them to status codes:
//
//	return mdwerror.Wrap(err, "failed to open store").
//		WithCode(mdwerror.CodeDatabaseError).
//		WithOperation("repository.OpenSQLite")
package error
