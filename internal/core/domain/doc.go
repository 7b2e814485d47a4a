// Package domain holds the coded errors returned across the session
// container: bean reconstruction, codec, storage and settings failures.
//
// Every error is a *DomainError compared by code, so wrapped instances
// still satisfy errors.Is against the package sentinels.
package domain
