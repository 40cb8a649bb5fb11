// Package models contains the GORM models of the service's tables. Domain
// types carry no ORM tags; each model converts to and from its domain type
// with ToDomain and FromDomain.
package models
