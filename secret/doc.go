// Package secret resolves references to cached parameters inside
// configuration strings.
//
// A reference has the form "secretref:<provider>:<ref>" and may make up the
// whole value or appear inline ("Bearer secretref:param:/api/token"). Values
// are first expanded with ExpandEnvStrict. ParamProvider, registered as
// "param", answers references from cache.Parameter values, so resolved
// secrets follow the parameter's max age.
package secret
