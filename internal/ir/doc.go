// Package ir provides the instance representation shared by every store copy.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Attribute values are a sealed set: String, Int and Ref. No floats.
//   - An Instance carries its class name; which attributes are legal for that
//     class is decided by internal/schema, not here.
//   - Instances from different stores are correlated by DBID only, never by
//     pointer identity.
package ir
