/*
Package security groups the protections around the administration API.

  - auth: API-key authentication, attributing each request to an
    administrator
  - secrets: ${secret:name} references resolved from the environment or a
    secrets directory, so keys stay out of config.yaml
  - tls: TLS for the API listener with certificate hot reload and optional
    client certificate verification
*/
package security
