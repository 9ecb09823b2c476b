// Package books holds the preset book list and library lookup.
package books

import "net/url"

type Book struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Link  string `json:"link"`
}

var Presets = []Book{
	{Title: "明朝那些事儿", ID: "1186557", Link: "https://findshnu.libsp.cn/#/searchList/bookDetails/1186557"},
	{Title: "红楼梦", ID: "1037001", Link: "https://findshnu.libsp.cn/#/searchList/bookDetails/1037001"},
	{Title: "百年孤独", ID: "868521", Link: "https://findshnu.libsp.cn/#/searchList/bookDetails/868521"},
	{Title: "杀死一只知更鸟", ID: "1058238", Link: "https://findshnu.libsp.cn/#/searchList/bookDetails/1058238"},
	{Title: "第七天", ID: "947870", Link: "https://findshnu.libsp.cn/#/searchList/bookDetails/947870"},
}

// Lookup finds a preset by exact title.
func Lookup(title string) (Book, bool) {
	for _, b := range Presets {
		if b.Title == title {
			return b, true
		}
	}
	return Book{}, false
}

// LibraryLink returns the preset's catalog link, or a search link for
// titles outside the preset list.
func LibraryLink(title string) string {
	if b, ok := Lookup(title); ok {
		return b.Link
	}
	return "https://findshnu.libsp.cn/#/searchList?searchKeyword=" + url.QueryEscape(title)
}
