// Package config provides configuration parsing for the microscope CLI.
//
// The configuration is stored in microscope.json (or microscope.toml /
// microscope.yaml) in the working directory or one of its parents. The
// format is chosen by file extension.
//
// # Configuration File Structure
//
//	{
//	  "inspector": {
//	    "host": "localhost",
//	    "port": 7411,
//	    "historyLimit": 100
//	  },
//	  "relay": {
//	    "host": "localhost",
//	    "port": 7412
//	  },
//	  "storage": {
//	    "backend": "sqlite",
//	    "path": ".microscope/store.db"
//	  },
//	  "log": {
//	    "level": "info",
//	    "format": "text"
//	  }
//	}
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Inspector:", cfg.InspectorAddress())
package config
