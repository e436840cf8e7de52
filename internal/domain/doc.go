// Package domain defines the data models and contracts shared by the
// trust-establishment engine, its stores and its transports. It contains
// plain types and interfaces only.
package domain
