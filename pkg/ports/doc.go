/*
Package ports defines the capabilities the tour engine consumes.

The engine never touches a browser, a database or a router directly; the host hands
it implementations of these interfaces.

# Key Interfaces

  - Storage: getItem/setItem/removeItem style key/value persistence.
  - Router: builds URLs for named routes and performs navigation.
  - DistributedLocker: serialises events for a session across replicas.

RunStorageContract is a reusable test suite every Storage adapter runs.
*/
package ports
