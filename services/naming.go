package services

import "rag-backend/utils"

const collectionPrefix = "col_"

// CollectionName maps a URL to its collection identifier. The raw string is
// hashed as is, so URLs differing only by a trailing slash or query order get
// separate collections.
func CollectionName(url string) string {
	return collectionPrefix + utils.MD5Hex(url)
}
