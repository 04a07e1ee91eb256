package directory

import (
	"errors"
	"fmt"
	"net"

	"github.com/go-ldap/ldap/v3"

	"github.com/netadmind/netadmind/internal/shared"
)

// mapError collapses the LDAP library's result-code vocabulary into the
// application's error taxonomy so nothing downstream depends on ldap types.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject):
		return fmt.Errorf("%w: %v", shared.ErrNotFound, err)
	case ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists),
		ldap.IsErrorWithCode(err, ldap.LDAPResultAttributeOrValueExists):
		return fmt.Errorf("%w: %v", shared.ErrDuplicate, err)
	case ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchAttribute):
		return fmt.Errorf("%w: %v", shared.ErrNotFound, err)
	case ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials):
		return shared.ErrInvalidCredentials
	case ldap.IsErrorWithCode(err, ldap.LDAPResultConstraintViolation),
		ldap.IsErrorWithCode(err, ldap.LDAPResultObjectClassViolation),
		ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidAttributeSyntax):
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	case isNetworkError(err):
		return fmt.Errorf("%w: %v", shared.ErrDirectoryUnavailable, err)
	}
	return err
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if ldap.IsErrorWithCode(err, ldap.ErrorNetwork) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
