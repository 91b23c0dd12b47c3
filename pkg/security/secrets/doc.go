/*
Package secrets keeps API keys out of the configuration file.

Any configured key may be written as a reference:

	api:
	  auth:
	    keys:
	      - admin: alice
	        key: ${secret:alice-key}

The Manager tries each provider in order. EnvProvider reads
WARDEN_SECRET_ALICE_KEY; FileProvider reads the file "alice-key" from a
directory such as a mounted secret volume.

	m := secrets.NewManager([]secrets.Provider{
		secrets.NewEnvProvider(secrets.DefaultEnvPrefix),
		fileProvider,
	}, logger)
	key, err := m.Resolve(ctx, "${secret:alice-key}")
*/
package secrets
