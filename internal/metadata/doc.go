// Package metadata implements the capture metadata adapters: MD5 hashing,
// file creation dates, barcode decoding through an external zbarimg process,
// and blur scoring of derived images.
//
// All adapters are blocking and are called synchronously by the correlator.
package metadata
