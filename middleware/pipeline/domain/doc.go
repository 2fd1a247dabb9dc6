// Package domain defines the contracts and types of the gateway request
// pipeline: rate rules and their layered merge, bucket admission state,
// signed tokens, the live config snapshot and the failure taxonomy.
//
// This package does not depend on net/http nor on concrete infrastructure.
// The intent is to keep policy rules unit-testable and decoupled from Redis
// and transport details.
package domain
