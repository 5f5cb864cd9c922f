package sessionlog

// migrate applies the forward-only chain of migrations described in spec
// §4.1, starting from the version recorded in the header, up to
// headerVersion. v1->v2 stamps ids/parentIds onto every entry (deriving
// parent links from the index-based compaction pointer that v1 used,
// dropping the index field once the id exists). v2->v3 renames the
// "hookMessage" role to "custom".
func migrate(header map[string]any, entries []map[string]any) (map[string]any, []map[string]any) {
	version := 1
	if v, ok := header["version"]; ok {
		if f, ok := v.(float64); ok {
			version = int(f)
		}
	}

	if version < 2 {
		entries = migrateV1ToV2(entries)
		version = 2
	}
	if version < 3 {
		entries = migrateV2ToV3(entries)
		version = 3
	}

	header["version"] = headerVersion
	return header, entries
}

func migrateV1ToV2(entries []map[string]any) []map[string]any {
	ids := make([]string, len(entries))
	for i, e := range entries {
		if id, ok := e["id"].(string); ok && id != "" {
			ids[i] = id
			continue
		}
		id, err := newEntryID()
		if err != nil {
			id = "00000000"
		}
		e["id"] = id
		ids[i] = id
	}
	for i, e := range entries {
		if _, ok := e["parentId"]; ok {
			continue
		}
		if i == 0 {
			continue
		}
		e["parentId"] = ids[i-1]
	}
	for _, e := range entries {
		if e["type"] != "compaction" {
			continue
		}
		idxVal, ok := e["firstKeptEntryIndex"]
		if !ok {
			continue
		}
		idxF, ok := idxVal.(float64)
		if !ok {
			continue
		}
		idx := int(idxF)
		if idx >= 0 && idx < len(ids) {
			e["firstKeptEntryId"] = ids[idx]
		}
		delete(e, "firstKeptEntryIndex")
	}
	return entries
}

func migrateV2ToV3(entries []map[string]any) []map[string]any {
	for _, e := range entries {
		msg, ok := e["message"].(map[string]any)
		if !ok {
			continue
		}
		if msg["kind"] == "hookMessage" {
			msg["kind"] = "custom"
		}
	}
	return entries
}
