// SPDX-FileCopyrightText: 2026 Inhumate AB
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package proto contains the typed messages exchanged between RTI clients on the well known rti/* channels.
//
// Each message implements the cboring.CborMarshaler interface and is therefore serializable as CBOR. Messages with
// alternative contents, e.g., Clients or Channels, are written as an array of a type code and the selected content,
// similar to a protobuf oneof. Inside the text based publish envelope, CBOR payloads are carried base64 encoded,
// which is handled by Encode and Decode.
package proto
