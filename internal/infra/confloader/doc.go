// Package confloader loads configuration through koanf.
//
// Sources are applied in order, later ones overriding earlier ones:
// YAML file, environment variables, then explicit maps. Environment
// variables use SFSB_ as prefix and a double underscore as the nesting
// separator, since keys themselves contain single underscores:
//
//	SFSB_CONTAINER__INACTIVITY_TIMEOUT=600  ->  container.inactivity_timeout
//
// Watcher reports writes to a configuration file so callers can apply
// the settings that may change at runtime.
package confloader
