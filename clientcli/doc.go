// Package clientcli provides a client library for stowgate servers.
//
// It uploads, downloads, deletes and lists objects, changes their visibility
// and creates presigned share links. Mutations authenticate with the shared
// secret sent as a bearer token; share links are signed locally with an
// access key pair the server knows. Profiles keep the settings of several
// servers in one config file.
//
// # Basic Usage
//
// Create a client and upload a public file:
//
//	cfg := &clientcli.Config{
//		Endpoint: "http://localhost:5708",
//		Secret:   "your-shared-secret",
//	}
//
//	client, err := clientcli.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := client.Upload(ctx, clientcli.UploadOptions{
//		LocalPath:  "./file.txt",
//		RemotePath: "documents/file.txt",
//		Visibility: stowgate.VisibilityPublic,
//	})
//
// # Share Links
//
// With AccessKey and SecretKey set, Share returns a URL that reads one
// object until it expires, whatever its visibility:
//
//	link, err := client.Share(clientcli.ShareOptions{
//		RemotePath: "documents/file.txt",
//		Expires:    time.Hour,
//	})
//
// # Profile Configuration
//
// Use profiles to manage multiple server configurations:
//
//	configFile, err := clientcli.LoadConfigFile(clientcli.DefaultConfigPath())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	profile, err := configFile.GetProfile("production")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	cfg := clientcli.ConfigFromProfile(profile)
//	client, err := clientcli.New(cfg)
//
// # Output Formatting
//
// Use formatters for human-readable or JSON output:
//
//	formatter := clientcli.NewFormatter(jsonOutput, quiet)
//	formatter.FormatUpload(os.Stdout, results)
package clientcli
