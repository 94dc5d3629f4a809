/*
Package errors provides the semantic error taxonomy shared by every document store backend.

Backends translate service responses (HTTP status codes, DynamoDB exceptions) into these
types so callers can branch on meaning instead of on a particular SDK:

	var (
	    ErrNotFound     = errors.New("resource not found")
	    ErrConflict     = errors.New("resource already exists")
	    ErrInvalidInput = errors.New("invalid input")
	    ErrConnection   = errors.New("connection failed")
	    ErrUnsupported  = errors.New("operation not supported")
	)

Usage:

	resp, err := container.CreateItem(ctx, "Andersen", doc)
	if err != nil {
	    if errors.IsConflict(err) {
	        // the document is already there, leave it alone
	        return nil
	    }
	    return err
	}

The typed errors implement Is, so wrapped errors still match with the standard errors.Is.
*/
package errors
