package assetcache

import "errors"

// ErrLocalNotFound is reported when a reference without a network scheme
// does not name an existing local file. The reference is left unchanged.
var ErrLocalNotFound = errors.New("local asset not found")
